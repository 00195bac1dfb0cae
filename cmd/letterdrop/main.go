package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/mailer"
	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/service"
	"github.com/letterdrop/letterdrop/internal/tabular"
)

var rootCmd = &cobra.Command{
	Use:   "letterdrop",
	Short: "Appointment letter mail-merge tool",
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Generate letters and email them to recipients",
	RunE:  runSend,
}

var testCmd = &cobra.Command{
	Use:   "test-smtp",
	Short: "Send a self-addressed test email to verify SMTP settings",
	RunE:  runTest,
}

var (
	flagTemplate string
	flagData     string
	flagName     string
	flagJoined   string
	flagEmail    string
	flagBody     string
	flagSubject  string

	flagSender     string
	flagPassword   string
	flagServer     string
	flagPort       int
	flagEncryption string
)

func init() {
	sendCmd.Flags().StringVar(&flagTemplate, "template", "", "letter template (.docx or .txt)")
	sendCmd.Flags().StringVar(&flagData, "data", "", "recipient spreadsheet (.xlsx or .csv); omit for single mode")
	sendCmd.Flags().StringVar(&flagName, "name", "", "recipient name (single mode)")
	sendCmd.Flags().StringVar(&flagJoined, "date-of-joining", "", "recipient joining date (single mode)")
	sendCmd.Flags().StringVar(&flagEmail, "email", "", "recipient email (single mode)")
	sendCmd.Flags().StringVar(&flagBody, "body", "Dear {{name}},\n\nPlease find your appointment letter attached.", "email body template")
	sendCmd.Flags().StringVar(&flagSubject, "subject", "", "email subject (defaults to the configured subject)")
	_ = sendCmd.MarkFlagRequired("template")

	for _, cmd := range []*cobra.Command{sendCmd, testCmd} {
		cmd.Flags().StringVar(&flagSender, "sender", "", "sender email address")
		cmd.Flags().StringVar(&flagPassword, "password", "", "sender password (or LETTERDROP_SMTP_PASSWORD)")
		cmd.Flags().StringVar(&flagServer, "server", "", "SMTP server host")
		cmd.Flags().IntVar(&flagPort, "port", 587, "SMTP server port")
		cmd.Flags().StringVar(&flagEncryption, "encryption", "starttls", `encryption mode: "starttls" or "ssl"`)
		_ = cmd.MarkFlagRequired("sender")
		_ = cmd.MarkFlagRequired("server")
	}

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(testCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func credentials() model.SMTPCredentials {
	password := flagPassword
	if password == "" {
		password = os.Getenv("LETTERDROP_SMTP_PASSWORD")
	}
	encryption := model.EncryptionSTARTTLS
	if flagEncryption == "ssl" {
		encryption = model.EncryptionSSL
	}
	return model.SMTPCredentials{
		SenderEmail:    flagSender,
		SenderPassword: password,
		Server:         flagServer,
		Port:           flagPort,
		Encryption:     encryption,
	}
}

func newBatchService(cfg *config.Config, log *logger.Logger) *service.BatchService {
	var converter *letter.Converter
	if cfg.Letter.ConvertToPDF {
		converter = letter.NewConverter(cfg.Letter.SofficeBin, cfg.Letter.ConvertTimeout)
	}
	gen := letter.NewGenerator(converter, log)
	newSender := func(creds model.SMTPCredentials) mailer.Sender {
		return mailer.NewSMTPSender(creds, cfg.Email.SessionTimeout)
	}
	return service.NewBatchService(gen, newSender, cfg, log)
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, "console")

	template, err := os.ReadFile(flagTemplate)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	req := service.RunRequest{
		Template:     template,
		TemplateName: flagTemplate,
		Credentials:  credentials(),
		Subject:      flagSubject,
		BodyTemplate: flagBody,
	}

	if flagData != "" {
		data, err := os.ReadFile(flagData)
		if err != nil {
			return fmt.Errorf("read data source: %w", err)
		}
		req.Mode = service.ModeBatch
		req.TableData = data
		req.TableFormat = tabular.DetectFormat(flagData)
	} else {
		req.Mode = service.ModeSingle
		req.Single = &model.RecipientRecord{
			Name:          flagName,
			DateOfJoining: flagJoined,
			Email:         flagEmail,
		}
	}

	report, err := newBatchService(cfg, log).Run(context.Background(), req)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d out of %d letters successfully\n", report.SuccessCount, report.Total)
	fmt.Printf("Letters written to %s\n", report.OutputDir)
	for _, o := range report.Outcomes {
		fmt.Printf("  %-30s %-30s %s\n", o.Name, o.Email, o.Label())
	}
	return nil
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, "console")

	if err := newBatchService(cfg, log).TestConnection(context.Background(), credentials()); err != nil {
		return err
	}
	fmt.Println("Test email sent successfully")
	return nil
}
