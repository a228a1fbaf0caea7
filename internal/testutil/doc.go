// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing sessions, plans, tool registries and
// scripted models. They are not intended for production usage.
package testutil
