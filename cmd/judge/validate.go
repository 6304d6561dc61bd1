package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/itstheanurag/pyjudge/internal/validator"
	"github.com/urfave/cli/v3"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "check a submission against a template without running it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "submission template file", Required: true},
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "submission file", Required: true},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			template, err := os.ReadFile(c.String("template"))
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			code, err := os.ReadFile(c.String("code"))
			if err != nil {
				return fmt.Errorf("failed to read submission: %w", err)
			}
			return reportValidation(os.Stdout, validator.Validate(string(template), string(code)))
		},
	}
}

// reportValidation prints the outcome and returns err only when it is not
// a plain validation failure.
func reportValidation(w io.Writer, err error) error {
	var ve *validator.ValidationError
	switch {
	case err == nil:
		color.New(color.FgGreen).Fprintln(w, "valid")
		return nil
	case errors.As(err, &ve):
		color.New(color.FgRed).Fprintln(w, ve.Error())
		return cli.Exit("", 1)
	}
	return err
}
