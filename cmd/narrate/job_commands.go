package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(opts *globalOptions) *cobra.Command {
	var (
		filePath   string
		videoURL   string
		scriptPath string
		voice      string
		subtitles  bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a narration job",
		RunE: func(cmd *cobra.Command, args []string) error {
			if scriptPath == "" {
				return fmt.Errorf("--script is required")
			}
			scriptData, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			summary, err := client.submit(cmd.Context(), submitParams{
				filePath:  filePath,
				videoURL:  videoURL,
				script:    scriptData,
				voice:     voice,
				subtitles: subtitles,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", summary.JobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Local video file to narrate")
	cmd.Flags().StringVarP(&videoURL, "url", "u", "", "Video URL to narrate")
	cmd.Flags().StringVarP(&scriptPath, "script", "s", "", "Path to the timed script JSON")
	cmd.Flags().StringVar(&voice, "voice", "", "Synthesis voice override")
	cmd.Flags().BoolVar(&subtitles, "subtitles", false, "Burn the script into the frames as captions")
	return cmd
}

func newStatusCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			summary, err := client.status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job:    %s\n", summary.JobID)
			fmt.Fprintf(out, "status: %s\n", summary.Status)
			if summary.Stage != "" {
				fmt.Fprintf(out, "stage:  %s\n", summary.Stage)
			}
			if summary.Output != "" {
				fmt.Fprintf(out, "output: %s\n", summary.Output)
			}
			if summary.Error != "" {
				fmt.Fprintf(out, "error:  %s\n", summary.Error)
			}
			return nil
		},
	}
}

func newDownloadCommand(opts *globalOptions) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the finished artifact for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			dest := outputPath
			if dest == "" {
				dest = args[0] + ".mp4"
			}
			if err := client.download(cmd.Context(), args[0], dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path for the artifact")
	return cmd
}

func newJobsCommand(opts *globalOptions) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			jobs, err := client.jobs(cmd.Context(), statuses)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				detail := job.Error
				if job.Status == "completed" {
					detail = job.Output
				}
				rows = append(rows, []string{job.JobID, job.Status, job.Stage, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "STATUS", "STAGE", "DETAIL"}, rows))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (queued, processing, completed, failed)")
	return cmd
}

func newRetryCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Re-queue failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			count, err := client.retry(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "re-queued %d job(s)\n", count)
			return nil
		},
	}
}

func newClearCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <completed|failed>",
		Short: "Remove terminal jobs from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := strings.ToLower(args[0])
			if status != "completed" && status != "failed" {
				return fmt.Errorf("status must be completed or failed")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			count, err := client.clear(cmd.Context(), status)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d job(s)\n", count)
			return nil
		},
	}
}

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			health, err := client.health(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total:      %d\n", health.Total)
			fmt.Fprintf(out, "queued:     %d\n", health.Queued)
			fmt.Fprintf(out, "processing: %d\n", health.Processing)
			fmt.Fprintf(out, "completed:  %d\n", health.Completed)
			fmt.Fprintf(out, "failed:     %d\n", health.Failed)
			return nil
		},
	}
}
