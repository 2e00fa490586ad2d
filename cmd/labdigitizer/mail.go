package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Process an inbound email stored in S3 and reply with results",
	Long: `Mail downloads a raw MIME message (as delivered by SES receipt rules),
extracts readings from its image attachments and replies to the sender
and Cc recipients with the spreadsheet attached.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bucket, _ := cmd.Flags().GetString("bucket")
		key, _ := cmd.Flags().GetString("key")

		app, err := loadApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if bucket == "" {
			bucket = app.Config.S3.Bucket
		}
		out, err := app.Mail.ProcessObject(cmd.Context(), bucket, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "request %s: replied to %v\n", out.RequestID, out.Recipients)
		return nil
	},
}

func init() {
	mailCmd.Flags().String("bucket", "", "bucket holding the raw message (default: s3.bucket)")
	mailCmd.Flags().String("key", "", "object key of the raw message")
	_ = mailCmd.MarkFlagRequired("key")

	rootCmd.AddCommand(mailCmd)
}
