package main

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	usageErrorCode     = "COMMAND_USAGE"
	pageNotFoundCode   = "PAGE_NOT_FOUND"
	commandFailedCode  = "COMMAND_EXECUTION_FAILED"
	storageOpenFailure = "STORAGE_OPEN_FAILED"
)

func usageError(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid command usage").
		WithTextCode(usageErrorCode)
}

func notFound(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryCommand, "page not found").
		WithTextCode(pageNotFoundCode)
}

// commandFailed wraps err unless it already carries a category
func commandFailed(err error, code string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	if code == "" {
		code = commandFailedCode
	}
	return goerrors.Wrap(err, goerrors.CategoryCommand, "command execution failed").
		WithTextCode(code)
}
