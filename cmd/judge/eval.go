package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/itstheanurag/pyjudge/internal/evaluator"
	"github.com/itstheanurag/pyjudge/internal/grader"
	"github.com/itstheanurag/pyjudge/internal/problems"
	"github.com/itstheanurag/pyjudge/internal/sandbox"
	"github.com/itstheanurag/pyjudge/internal/scratch"
	"github.com/urfave/cli/v3"
)

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "evaluate one submission against a local problem folder",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "problem", Aliases: []string{"p"}, Usage: "folder with submission_template.py and testcase.py", Required: true},
			&cli.StringFlag{Name: "code", Aliases: []string{"c"}, Usage: "submission file (default: the problem's solution.py)"},
			&cli.StringFlag{Name: "image", Usage: "base Python image, overrides config"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			conf, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if img := c.String("image"); img != "" {
				conf.Sandbox.Image = img
			}

			ps := problems.NewFSStore(conf.Problems.Root)
			a, err := ps.Dir(ctx, c.String("problem"), 0)
			if err != nil {
				return err
			}

			code := a.Solution
			if path := c.String("code"); path != "" {
				if code, err = os.ReadFile(path); err != nil {
					return fmt.Errorf("failed to read submission: %w", err)
				}
			}
			if len(code) == 0 {
				return cli.Exit("no --code given and the problem has no solution.py", 2)
			}

			sb, err := sandbox.NewDockerSandbox(conf.Sandbox.Instance, &logger)
			if err != nil {
				return fmt.Errorf("failed to create sandbox: %w", err)
			}
			defer sb.Close()

			if err := sb.EnsureImage(ctx, conf.Sandbox.Image); err != nil {
				return err
			}

			engine := evaluator.NewEngine(
				ps,
				scratch.NewBuilder(conf.Sandbox.WorkRoot, conf.Sandbox.Image),
				sandbox.NewRunner(sb, &logger),
				evaluator.ConfigFrom(conf.Sandbox),
				&logger,
			)

			res, err := engine.EvaluateArtifacts(ctx, a, string(code))
			if err != nil {
				return reportValidation(os.Stdout, err)
			}
			printResult(os.Stdout, res)
			if !res.IsPass {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func printResult(w io.Writer, res evaluator.Result) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	for i, v := range res.Verdicts {
		line := res.Results[i]
		switch v.Status {
		case grader.StatusPassed:
			fmt.Fprintln(w, pass(line))
		case grader.StatusTimeout:
			fmt.Fprintln(w, warn(line))
		default:
			fmt.Fprintln(w, fail(line))
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 32))
	fmt.Fprintf(w, "time:   %s\n", orUnknown(res.RealTime, "%.3fs"))
	fmt.Fprintf(w, "memory: %s\n", orUnknown(res.RAM, "%.2f MiB"))
	if res.IsPass {
		fmt.Fprintln(w, pass("PASSED"))
	} else {
		fmt.Fprintln(w, fail("FAILED"))
	}
}

func orUnknown(v *float64, format string) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf(format, *v)
}
