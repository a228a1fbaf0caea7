package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/accountplan"
	"github.com/hupe1980/accountplan/core"
	"github.com/hupe1980/accountplan/engine"
	"github.com/hupe1980/accountplan/logging"
	"github.com/hupe1980/accountplan/render"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Plan an account interactively in the terminal",
	Long: `Chat with the planner in the terminal.

Commands:
  /progress            show the research progress log
  /regen <section> ... regenerate a section with an optional instruction
  /export [html|md]    write the current plan to the working directory
  /quit                leave`,
	RunE: runChat,
}

var (
	assistantColor = color.New(color.FgCyan)
	progressColor  = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	promptColor    = color.New(color.FgGreen, color.Bold)
)

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := accountplan.NewFromConfig(cmd.Context(), cfg, logging.NoOpLogger{})
	if err != nil {
		return err
	}
	defer svc.Close()

	return chatLoop(cmd, svc, os.Stdin, cmd.OutOrStdout())
}

func chatLoop(cmd *cobra.Command, svc *accountplan.Service, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	id := uuid.NewString()
	seen := 0

	printProgress := func() {
		snap, err := svc.Progress(ctx, id)
		if err != nil {
			return
		}
		for _, p := range snap.Progress[seen:] {
			progressColor.Fprintln(out, "  "+p.Message)
		}
		seen = len(snap.Progress)
	}

	assistantColor.Fprintln(out, "Hi! Which company should we plan for? Share the region, buyer persona, product focus, research depth and tone too.")
	scanner := bufio.NewScanner(in)
	for {
		promptColor.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/progress":
			seen = 0
			printProgress()
			continue
		case strings.HasPrefix(line, "/regen"):
			fields := strings.Fields(strings.TrimPrefix(line, "/regen"))
			if len(fields) == 0 {
				errorColor.Fprintln(out, "usage: /regen <section> [instruction]")
				continue
			}
			res, err := svc.Regenerate(ctx, id, fields[0], strings.Join(fields[1:], " "))
			printProgress()
			if err != nil {
				errorColor.Fprintln(out, err)
				continue
			}
			assistantColor.Fprintf(out, "Section %s is now at version %d.\n", res.Section, res.Version)
			continue
		case strings.HasPrefix(line, "/export"):
			if err := export(cmd, svc, id, strings.TrimSpace(strings.TrimPrefix(line, "/export")), out); err != nil {
				errorColor.Fprintln(out, err)
			}
			continue
		}

		reply, err := svc.HandleMessage(ctx, id, line)
		printProgress()
		if err != nil {
			errorColor.Fprintln(out, err)
			continue
		}
		printReply(out, reply)
	}
}

func printReply(out io.Writer, r engine.Reply) {
	if r.Busy {
		progressColor.Fprintln(out, "  (still working…)")
		return
	}
	assistantColor.Fprintln(out, r.Message)
	if r.Stage == core.StageReviewing {
		fmt.Fprintf(out, "  [plan v%d · sections: %s]\n", r.PlanVersion, sectionIDs())
	}
}

func sectionIDs() string {
	ids := make([]string, 0, core.SectionCount())
	for _, s := range core.Sections() {
		ids = append(ids, s.String())
	}
	return strings.Join(ids, ", ")
}

func export(cmd *cobra.Command, svc *accountplan.Service, id, format string, out io.Writer) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	doc, err := svc.Export(cmd.Context(), id, f)
	if err != nil {
		return err
	}
	if err := os.WriteFile(doc.FileName, doc.Data, 0o644); err != nil {
		return err
	}
	assistantColor.Fprintf(out, "Wrote %s\n", doc.FileName)
	return nil
}
