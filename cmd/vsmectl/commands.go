package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"vsmecore/internal/report"
	"vsmecore/internal/vsme"
	"vsmecore/pkg/domain"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func sectionsCommand() *cobra.Command {
	var withFields bool
	cmd := &cobra.Command{
		Use:   "sections",
		Short: "List the report sections and their collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, def := range vsme.Sections() {
				fmt.Fprintf(tw, "%s\t%s\n", def.Collection, def.Title)
				if !withFields {
					continue
				}
				for _, spec := range def.Schema {
					kind := string(spec.Kind)
					if spec.Derived {
						kind += " (derived)"
					}
					fmt.Fprintf(tw, "  %s\t%s\n", spec.Name, kind)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&withFields, "fields", false, "also list each section's fields")
	return cmd
}

func showCommand(a *app) *cobra.Command {
	var reportID, collection, output string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored values of one section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := lookupSection(collection)
			if err != nil {
				return err
			}
			w, err := a.workbook(cmd.Context(), reportID, []domain.Section{def})
			if err != nil {
				return err
			}
			st, _ := w.Section(collection)
			return writeFields(cmd.OutOrStdout(), def, st.Current(), output)
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "report id")
	cmd.Flags().StringVar(&collection, "section", "", "section collection name")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func setCommand(a *app) *cobra.Command {
	var (
		reportID, collection, output string
		save                         bool
	)
	cmd := &cobra.Command{
		Use:   "set field=value...",
		Short: "Assign section fields and print the recomputed values",
		Long: "Assign section fields and print the recomputed values. Without --save the\n" +
			"edit is only previewed. Use an empty value or null to clear a field.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := lookupSection(collection)
			if err != nil {
				return err
			}
			partial, err := parseAssignments(def.Schema, args)
			if err != nil {
				return err
			}
			w, err := a.workbook(cmd.Context(), reportID, []domain.Section{def})
			if err != nil {
				return err
			}
			st, _ := w.Section(collection)
			if err := st.SetFields(partial); err != nil {
				return err
			}
			if save {
				if err := st.Save(cmd.Context()); err != nil {
					return err
				}
				a.logger.Info("section saved", zap.String("collection", collection), zap.String("report_id", reportID))
			}
			return writeFields(cmd.OutOrStdout(), def, st.Current(), output)
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "report id")
	cmd.Flags().StringVar(&collection, "section", "", "section collection name")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	cmd.Flags().BoolVar(&save, "save", false, "persist the edit")
	return cmd
}

func statusCommand(a *app) *cobra.Command {
	var reportID, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the load and save state of every section of a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := a.workbook(cmd.Context(), reportID, vsme.Sections())
			if w == nil {
				return err
			}
			if err != nil {
				a.logger.Warn("some sections failed to load", zap.String("report_id", reportID), zap.Error(err))
			}
			statuses := w.Statuses()
			if output != outputTable {
				return encode(cmd.OutOrStdout(), statuses, output)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range statuses {
				saved := "-"
				if s.LastSavedAt != nil {
					saved = s.LastSavedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Collection, s.Kind, saved, s.Error)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "report id")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func exportCommand(a *app) *cobra.Command {
	var reportID, format string
	var toStdout bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Aggregate every section of a report into a submission and archive it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			w, err := a.workbook(cmd.Context(), reportID, vsme.Sections())
			if err != nil {
				return err
			}
			sub := w.Submission()
			if toStdout {
				return report.Encode(cmd.OutOrStdout(), sub, f)
			}
			archiver, err := a.openArchive(cmd.Context())
			if err != nil {
				return err
			}
			info, err := archiver.Archive(cmd.Context(), sub, f)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.Key)
			return err
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "report id")
	cmd.Flags().StringVar(&format, "format", string(report.FormatJSON), "submission format: json or yaml")
	cmd.Flags().BoolVar(&toStdout, "print", false, "write the submission to stdout instead of archiving it")
	return cmd
}

func historyCommand(a *app) *cobra.Command {
	var reportID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived submissions of a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reportID == "" {
				return fmt.Errorf("--report is required")
			}
			archiver, err := a.openArchive(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := archiver.History(cmd.Context(), reportID)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "report id")
	return cmd
}

func writeFields(out io.Writer, def domain.Section, fields domain.Fields, output string) error {
	if output != outputTable {
		return encode(out, fields, output)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, spec := range def.Schema {
		v, ok := fields[spec.Name]
		if !ok || v == nil {
			fmt.Fprintf(tw, "%s\t-\n", spec.Name)
			continue
		}
		fmt.Fprintf(tw, "%s\t%v\n", spec.Name, v)
	}
	return tw.Flush()
}

func encode(out io.Writer, v any, output string) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output %q: want table, json or yaml", output)
}
