// Command onboard runs the voice onboarding questionnaire in the terminal and
// uploads one recording per answered question.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vox/internal/analyser"
	"github.com/soaringjerry/Vox/internal/client"
	"github.com/soaringjerry/Vox/internal/config"
	"github.com/soaringjerry/Vox/internal/logging"
	"github.com/soaringjerry/Vox/internal/onboarding"
	"github.com/soaringjerry/Vox/internal/recorder"
	"github.com/soaringjerry/Vox/internal/services"
	"github.com/soaringjerry/Vox/internal/tui"
	"github.com/soaringjerry/Vox/internal/uploadqueue"
	"github.com/soaringjerry/Vox/internal/utils"
)

const drainTimeout = 30 * time.Second

func main() {
	cfgPath := flag.String("config", utils.Env("CONFIG", ""), "path to a config file")
	userID := flag.String("user", "", "user id to record for (a new uuid when empty)")
	lang := flag.String("lang", "en", "question language")
	logPath := flag.String("log", "", "write logs to this file (the screen is owned by the UI)")
	flag.Parse()

	if err := run(*cfgPath, *userID, *lang, *logPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfgPath, userID, lang, logPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewFile(cfg.Server.LogLevel, logPath)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if userID == "" {
		userID = uuid.NewString()
	} else if _, err := uuid.Parse(userID); err != nil {
		return fmt.Errorf("onboard: -user must be a uuid: %w", err)
	}
	pauseMode, err := onboarding.ParsePauseMode(cfg.Client.PauseMode)
	if err != nil {
		return err
	}

	api := client.New(cfg.Client.APIURL, 30*time.Second)
	ctx := context.Background()
	questions, err := api.Questions(ctx, lang)
	if err != nil || len(questions) == 0 {
		logger.Warn("questions from server unavailable, using built-in catalogue", zap.Error(err))
		questions = services.Questions(lang)
	}

	levels := analyser.Default()
	session := recorder.NewSession(&recorder.ArecordDevice{
		Name:       cfg.Client.DeviceName,
		SampleRate: cfg.Client.SampleRate,
		Logger:     logger,
	}, recorder.Options{
		Formats: cfg.Client.Formats,
		Tap:     levels.Write,
		Logger:  logger,
	})

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	queue := uploadqueue.New(api.Uploader(), uploadqueue.Options{
		Workers: cfg.Client.UploadWorkers,
		Retries: cfg.Client.UploadRetries,
		Backoff: cfg.Client.UploadBackoff,
		OnFailure: func(job uploadqueue.Job, err error) {
			send(tui.UploadFailedMsg{QuestionID: job.QuestionID, Err: err})
		},
		Logger: logger,
	})

	relay := tui.NewStateRelay()
	// Resetting the analyser per segment starts each question's waveform
	// from silence.
	ctrl, err := onboarding.New(session, queue, onboarding.Options{
		UserID:         userID,
		Questions:      len(questions),
		PauseMode:      pauseMode,
		CompleteDelay:  cfg.Client.CompleteDelay,
		OnComplete:     func() { send(tui.CompleteMsg{}) },
		OnChange:       relay.Publish,
		OnSegmentStart: func(onboarding.State) { levels.Reset() },
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	program = tea.NewProgram(tui.New(ctrl, levels, questions), tea.WithAltScreen())
	relayCtx, stopRelay := context.WithCancel(ctx)
	go relay.Run(relayCtx, program.Send)
	_, runErr := program.Run()
	stopRelay()

	_ = ctrl.Close(ctx)
	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if err := queue.Close(drainCtx); err != nil {
		logger.Warn("uploads still pending at exit", zap.Error(err))
	}
	st := queue.Stats()
	fmt.Printf("user %s: %d uploaded, %d failed\n", userID, st.Succeeded, st.Failed)
	if runErr != nil {
		return runErr
	}
	if st.Failed > 0 {
		return fmt.Errorf("onboard: %d recordings could not be uploaded", st.Failed)
	}
	return nil
}
