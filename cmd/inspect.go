package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/mail-extract/charset"
	"github.com/dhcgn/mail-extract/config"
	"github.com/dhcgn/mail-extract/extract"
	"github.com/dhcgn/mail-extract/mbox"
	"github.com/dhcgn/mail-extract/thread"
)

const previewRunes = 60

func newInspectCommand() *cobra.Command {
	inspectCmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show decoded headers and thread segments of a file without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.NewViper(cmd)
			if err != nil {
				return err
			}

			rules, err := config.LoadRules(v.GetString("rules"))
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(config.NormalizeLogLevel(v.GetString("log-level")), v.GetString("log-dir"), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			processor := extract.NewProcessor(extract.Processor{
				Resolver:  charset.New(rules.CharsetOptions(v.GetStringSlice("encodings"), v.GetBool("detect"))),
				Segmenter: thread.New(rules.Separators.List),
				DryRun:    true,
				Logger:    logger,
			})

			result, err := processor.Process(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := printInspection(cmd.OutOrStdout(), result, v.GetBool("full")); err != nil {
				return err
			}

			if strings.EqualFold(filepath.Ext(args[0]), ".mbox") {
				total, err := mbox.CountMessages(args[0])
				if err != nil {
					return err
				}
				if skipped := total - result.Emails; skipped > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d archived message(s) could not be parsed\n", skipped, total)
				}
			}

			if dir := v.GetString("report"); dir != "" {
				path, err := saveSegmentReport(result, dir)
				if err != nil {
					return fmt.Errorf("save report: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved to: %s\n", path)
			}
			return nil
		},
	}

	flags := inspectCmd.Flags()
	flags.String("rules", "", "YAML file overriding separators, encodings and mojibake rules")
	flags.StringSlice("encodings", nil, "Fallback charset priority list (replaces the rules list)")
	flags.Bool("detect", false, "Enable statistical charset detection before the fallback list")
	flags.Bool("full", false, "Print complete segment bodies instead of a preview")
	flags.String("report", "", "Directory for a CSV report of all segments")
	config.RegisterLogFlags(inspectCmd)

	return inspectCmd
}

func printInspection(w io.Writer, result extract.Result, full bool) error {
	fmt.Fprintf(w, "%s: %d email(s)\n", result.Path, result.Emails)

	for _, msg := range result.Messages {
		email := msg.Email
		title := "Email"
		if email.InArchive {
			title = "Email " + strconv.Itoa(email.Index)
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, pterm.DefaultSection.WithLevel(2).Sprint(title))

		headers, err := pterm.DefaultTable.WithData(pterm.TableData{
			{"Subject", email.Headers.Subject},
			{"From", email.Headers.From},
			{"To", email.Headers.To},
			{"Date", email.Headers.Date},
		}).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, headers)

		data := pterm.TableData{{"#", "Chars", "Attachments", "Text"}}
		for _, seg := range msg.Segments {
			text := seg.BodyText
			if !full {
				text = preview(text, previewRunes)
			}
			data = append(data, []string{
				strconv.Itoa(seg.ThreadIndex),
				strconv.Itoa(len([]rune(seg.BodyText))),
				attachmentNames(seg.Attachments),
				text,
			})
		}
		segments, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return err
		}
		fmt.Fprintln(w, segments)
	}

	if result.Filtered > 0 {
		fmt.Fprintf(w, "\n%d email(s) filtered\n", result.Filtered)
	}
	return nil
}

// preview flattens text to one line of at most n runes.
func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n-3]) + "..."
}
