package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/model"
	"github.com/pavelanni/interviewprep/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export readiness reports of completed sessions as JSON",
		RunE:  runExport,
	}
	w := analytics.DefaultWeights()
	f := cmd.Flags()
	f.String("db", "interviewprep.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Float64("weight-concept", w.Concept, "Readiness weight of concept scores")
	f.Float64("weight-clarity", w.Clarity, "Readiness weight of clarity scores")
	f.Float64("weight-confidence", w.Confidence, "Readiness weight of confidence scores")
	f.Float64("weight-consistency", w.Consistency, "Readiness weight of score consistency")
	f.Float64("weak-threshold", analytics.DefaultWeakThreshold, "Average score below which a skill is weak")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	opts, err := reportOptions(v)
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportReports(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

func skillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List the skill catalogue and question counts per difficulty",
		RunE:  runSkills,
	}
	cmd.Flags().String("questions", "", "YAML question bank (empty = built-in bank)")
	addLogFlags(cmd)
	return cmd
}

func runSkills(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	c, bankName, err := loadCorpus(v)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# question bank: %s\n", bankName)
	fmt.Fprintln(tw, "SKILL\tEASY\tMEDIUM\tHARD")
	for _, skill := range c.Skills() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", skill,
			len(c.Pool(skill, model.DifficultyEasy)),
			len(c.Pool(skill, model.DifficultyMedium)),
			len(c.Pool(skill, model.DifficultyHard)),
		)
	}
	return tw.Flush()
}
