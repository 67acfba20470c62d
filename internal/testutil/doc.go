// Package testutil holds helpers shared by the worker's package tests.
package testutil
