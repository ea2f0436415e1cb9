package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/careerpath/internal/api"
	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/config"
	"github.com/kalambet/careerpath/internal/gaps"
	"github.com/kalambet/careerpath/internal/ingest"
	"github.com/kalambet/careerpath/internal/profile"
	"github.com/kalambet/careerpath/internal/recommend"
	"github.com/kalambet/careerpath/internal/roadmap"
	"github.com/kalambet/careerpath/internal/storage"
)

// selectionQuery validates the --role, --level and --timeline flags and
// encodes them as a query string.
func selectionQuery(cmd *cobra.Command) (string, error) {
	role, _ := cmd.Flags().GetString("role")
	level, _ := cmd.Flags().GetString("level")
	timeline, _ := cmd.Flags().GetString("timeline")

	sel, err := roadmap.ParseSelection(role, level, timeline)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("role", string(sel.Role))
	q.Set("level", string(sel.Level))
	q.Set("timeline", string(sel.Timeline))
	return "?" + q.Encode(), nil
}

func trackQuery(cmd *cobra.Command) (string, error) {
	role, _ := cmd.Flags().GetString("role")
	level, _ := cmd.Flags().GetString("level")

	r, err := roadmap.ParseRole(role)
	if err != nil {
		return "", err
	}
	l, err := roadmap.ParseLevel(level)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("role", string(r))
	q.Set("level", string(l))
	return "?" + q.Encode(), nil
}

// --- roadmap ---

var roadmapCmd = &cobra.Command{
	Use:   "roadmap",
	Short: "Show and track a career roadmap",
	Long: `Show and track a career roadmap.

Examples:
  careerpath roadmap show --role backend --level beginner --timeline 6-month
  careerpath roadmap toggle --role backend --phase core --skill "Data modeling"
  careerpath roadmap recommend --role data-ai --level advanced --timeline 12m`,
}

var roadmapShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the roadmap with completed skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := selectionQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var st coach.CareerStatus
		if err := client.getJSON(cmd.Context(), "/progress"+q, &st); err != nil {
			return err
		}
		renderCareer(cmd.OutOrStdout(), st)
		return nil
	},
}

var roadmapToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Mark a skill done, or undone if it already is",
	RunE: func(cmd *cobra.Command, args []string) error {
		phase, _ := cmd.Flags().GetString("phase")
		skill, _ := cmd.Flags().GetString("skill")
		if phase == "" || skill == "" {
			return fmt.Errorf("--phase and --skill are required")
		}
		q, err := selectionQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/progress/toggle"+q, api.ToggleSkillRequest{Phase: phase, Skill: skill})
		if err != nil {
			return err
		}
		var st coach.CareerStatus
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		state := "not done"
		if slices.Contains(st.Done, roadmap.SkillKey{PhaseID: phase, Skill: skill}) {
			state = "done"
		}
		printSuccess("%s: %s (%d%% complete)", skill, state, st.Progress.Percentage)
		return nil
	},
}

var roadmapResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all completed skills of the roadmap",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := selectionQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/progress"+q)
		if err != nil {
			return err
		}
		var st coach.CareerStatus
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printSuccess("Reset %s", st.Key)
		return nil
	},
}

var roadmapRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest what to study next",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := selectionQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var rec recommend.Recommendation
		if err := client.getJSON(cmd.Context(), "/recommendations"+q, &rec); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s %s\n", colorize(boldStyle, "Next skill:"), orNone(rec.NextSkill))
		fmt.Fprintf(w, "%s %s\n", colorize(boldStyle, "Weakest phase:"), orNone(rec.WeakestPhaseTitle))
		fmt.Fprintf(w, "%s %s\n", colorize(boldStyle, "Project idea:"), orNone(rec.SuggestedProject))
		return nil
	},
}

var roadmapOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "List every roadmap with recorded progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var entries []coach.OverviewEntry
		if err := client.getJSON(cmd.Context(), "/overview", &entries); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(w, "No roadmap started yet.")
			return nil
		}
		for _, e := range entries {
			label := fmt.Sprintf("%s · %s · %s", e.Selection.Role, e.Selection.Level, e.Selection.Timeline)
			fmt.Fprintf(w, "  %-36s %s\n", label, progressBar(e.Progress.Percentage, 20))
		}
		return nil
	},
}

func init() {
	roadmapCmd.PersistentFlags().String("role", "", "career role (frontend, backend, fullstack, data-ai)")
	roadmapCmd.PersistentFlags().String("level", "beginner", "experience level (beginner, intermediate, advanced)")
	roadmapCmd.PersistentFlags().String("timeline", "6-month", "plan duration (3-month, 6-month, 12-month)")

	roadmapToggleCmd.Flags().String("phase", "", "phase id (fundamentals, core, projects, interview)")
	roadmapToggleCmd.Flags().String("skill", "", "exact skill label")

	roadmapCmd.AddCommand(roadmapShowCmd)
	roadmapCmd.AddCommand(roadmapToggleCmd)
	roadmapCmd.AddCommand(roadmapResetCmd)
	roadmapCmd.AddCommand(roadmapRecommendCmd)
	roadmapCmd.AddCommand(roadmapOverviewCmd)
}

func renderCareer(w io.Writer, st coach.CareerStatus) {
	r := st.Roadmap
	fmt.Fprintf(w, "%s  %s\n",
		colorize(boldStyle, fmt.Sprintf("%s · %s · %s", r.Role, r.Level, r.Timeline)),
		colorize(mutedStyle, fmt.Sprintf("%d weeks", r.TotalWeeks())))
	fmt.Fprintf(w, "%s\n\n", progressBar(st.Progress.Percentage, 30))

	for _, p := range r.Phases {
		done := 0
		for _, s := range p.Skills {
			if slices.Contains(st.Done, p.Key(s)) {
				done++
			}
		}
		fmt.Fprintf(w, "%s  %s\n", colorize(boldStyle, p.Title), colorize(mutedStyle, fmt.Sprintf("%d weeks · %d/%d", p.EstimatedWeeks, done, len(p.Skills))))
		fmt.Fprintf(w, "  %s\n", p.Description)
		for _, s := range p.Skills {
			fmt.Fprintf(w, "  %s %s\n", checkbox(slices.Contains(st.Done, p.Key(s))), s)
		}
		if len(p.Resources) > 0 {
			fmt.Fprintf(w, "  %s %s\n", colorize(mutedStyle, "Resources:"), strings.Join(p.Resources, "; "))
		}
		fmt.Fprintln(w)
	}
}

func orNone(s *string) string {
	if s == nil {
		return colorize(mutedStyle, "none")
	}
	return *s
}

// --- track ---

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Show and tick off the step checklist of a role and level",
}

var trackShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the checklist with completed steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := trackQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var st coach.TrackStatus
		if err := client.getJSON(cmd.Context(), "/track"+q, &st); err != nil {
			return err
		}
		renderTrack(cmd.OutOrStdout(), st)
		return nil
	},
}

var trackToggleCmd = &cobra.Command{
	Use:   "toggle <step-id>",
	Short: "Mark a step done, or undone if it already is",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := trackQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/track/toggle"+q, api.ToggleStepRequest{Step: args[0]})
		if err != nil {
			return err
		}
		var st coach.TrackStatus
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printSuccess("%s toggled (%d%% complete)", args[0], st.Progress.Percentage)
		return nil
	},
}

var trackResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all completed steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := trackQuery(cmd)
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/track"+q)
		if err != nil {
			return err
		}
		var st coach.TrackStatus
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printSuccess("Reset %s", st.Key)
		return nil
	},
}

func init() {
	trackCmd.PersistentFlags().String("role", "", "career role (frontend, backend, fullstack, data-ai)")
	trackCmd.PersistentFlags().String("level", "beginner", "experience level (beginner, intermediate, advanced)")

	trackCmd.AddCommand(trackShowCmd)
	trackCmd.AddCommand(trackToggleCmd)
	trackCmd.AddCommand(trackResetCmd)
}

func renderTrack(w io.Writer, st coach.TrackStatus) {
	fmt.Fprintf(w, "%s\n", colorize(boldStyle, fmt.Sprintf("%s · %s", st.Track.Role, st.Track.Level)))
	fmt.Fprintf(w, "%s\n\n", progressBar(st.Progress.Percentage, 30))
	for _, p := range st.Track.Phases {
		fmt.Fprintln(w, colorize(boldStyle, p.Title))
		for _, s := range p.Steps {
			done := slices.Contains(st.Done, roadmap.SkillKey{PhaseID: p.ID, Skill: s.ID})
			fmt.Fprintf(w, "  %s %s %s\n", checkbox(done), s.Label, colorize(mutedStyle, "("+s.ID+")"))
			fmt.Fprintf(w, "      %s\n", s.Description)
		}
		fmt.Fprintln(w)
	}
}

// --- gaps ---

var jobPollInterval = 500 * time.Millisecond

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Record skill gaps in your profile",
}

var gapsAddCmd = &cobra.Command{
	Use:   "add <skill>",
	Short: "Record a missing skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profile/gaps", api.GapSkillRequest{Skill: args[0]})
		if err != nil {
			return err
		}
		var s profile.RoadmapSummary
		if err := decodeJSON(resp, &s); err != nil {
			return err
		}
		printSuccess("Skill gaps: %s", strings.Join(s.WeakSkills, ", "))
		return nil
	},
}

var gapsScanCmd = &cobra.Command{
	Use:   "scan <resume-file>",
	Short: "Scan a resume (PDF or text) for roadmap skills it does not mention",
	Long: `Scan a resume (PDF or text) for fundamentals and core skills of the
selected roadmap that it does not mention, and record them as skill gaps.

Examples:
  careerpath gaps scan cv.pdf --role backend --level intermediate
  careerpath gaps scan cv.txt --role frontend --wait=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := selectionQuery(cmd)
		if err != nil {
			return err
		}
		text, err := gaps.ReadFile(args[0])
		if err != nil {
			return err
		}
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/profile/gaps/scan"+q, api.ScanRequest{Filename: filepath.Base(args[0]), Text: text})
		if err != nil {
			return err
		}
		var queued map[string]string
		if err := decodeJSON(resp, &queued); err != nil {
			return err
		}

		wait, _ := cmd.Flags().GetBool("wait")
		if !wait {
			printSuccess("Queued scan job %s", queued["id"])
			return nil
		}

		printStep("Scanning %s...", args[0])
		timeout, _ := cmd.Flags().GetDuration("timeout")
		job, err := waitForJob(cmd.Context(), client, queued["id"], timeout)
		if err != nil {
			return err
		}
		if job.Status == storage.JobFailed {
			return fmt.Errorf("scan failed: %s", job.LastError)
		}

		var result ingest.ScanResult
		if err := json.Unmarshal(job.Result, &result); err != nil {
			return fmt.Errorf("decoding scan result: %w", err)
		}
		if len(result.Added) == 0 {
			printSuccess("Resume covers every fundamentals and core skill")
			return nil
		}
		w := cmd.OutOrStdout()
		for _, s := range result.Added {
			fmt.Fprintf(w, "  %s %s\n", colorize(warningStyle, "•"), s)
		}
		printSuccess("Recorded %d skill gaps", len(result.Added))
		return nil
	},
}

// waitForJob polls a job until it completes or fails for good.
func waitForJob(ctx context.Context, client *apiClient, id string, timeout time.Duration) (api.JobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		var job api.JobResponse
		if err := client.getJSON(ctx, "/jobs/"+url.PathEscape(id), &job); err != nil {
			return api.JobResponse{}, err
		}
		if job.Status == storage.JobCompleted || job.Status == storage.JobFailed {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return api.JobResponse{}, fmt.Errorf("job %s still %s: %w", id, job.Status, ctx.Err())
		case <-time.After(jobPollInterval):
		}
	}
}

func init() {
	gapsScanCmd.Flags().String("role", "", "career role (frontend, backend, fullstack, data-ai)")
	gapsScanCmd.Flags().String("level", "beginner", "experience level (beginner, intermediate, advanced)")
	gapsScanCmd.Flags().String("timeline", "6-month", "plan duration (3-month, 6-month, 12-month)")
	gapsScanCmd.Flags().Bool("wait", true, "wait for the scan to finish")
	gapsScanCmd.Flags().Duration("timeout", time.Minute, "how long to wait for the scan")

	gapsCmd.AddCommand(gapsAddCmd)
	gapsCmd.AddCommand(gapsScanCmd)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the roadmap section of your profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show roadmap summary and recent activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var p api.ProfileResponse
		if err := client.getJSON(cmd.Context(), "/profile/roadmap", &p); err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}

		fmt.Fprintln(w, p.Summary)
		limit, _ := cmd.Flags().GetInt("activity")
		for i, ev := range p.Activity {
			if i == limit {
				break
			}
			fmt.Fprintf(w, "  %s %s\n", colorize(mutedStyle, ev.At.Local().Format("2006-01-02 15:04")), ev.Label)
		}
		return nil
	},
}

func init() {
	profileShowCmd.Flags().Bool("json", false, "print the raw profile JSON")
	profileShowCmd.Flags().Int("activity", 10, "number of activity entries to show")
	profileCmd.AddCommand(profileShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(w, "  %s = %s  %s\n", colorize(boldStyle, k.Key), k.Value, colorize(mutedStyle, "("+k.EnvVar+")"))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
