package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	englishquest "github.com/EmanueleMagalhaes/EnglishQuest"
)

func main() {
	var (
		difficultyFlag = flag.String("difficulty", "Beginner", "Difficulty level (Beginner, Intermediate, Advanced)")
		userFlag       = flag.String("user", "", "Sign in as this user (requires a configured database)")
		configDir      = flag.String("config", "", "Directory containing config.yaml")
		summaryOnly    = flag.Bool("summary", false, "Print the recent history summary and exit")
		debug          = flag.Bool("debug", false, "Enable debug logging")
	)

	flag.Parse()

	cfg, err := englishquest.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *debug {
		cfg.Logging.Debug = true
	}

	logger, err := englishquest.NewLogger(cfg.Logging.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	app, err := englishquest.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer app.Close()

	ctx := context.Background()

	if *userFlag != "" {
		if app.Identity == nil {
			log.Fatal("Sign-in requires a database. Set ENGLISHQUEST_DATABASE_PATH or database.path in config.yaml.")
		}
		identity, err := app.Identity.SignIn(ctx, *userFlag)
		if err != nil {
			log.Fatalf("Sign-in failed: %v", err)
		}
		fmt.Printf("👤 Signed in as %s\n", identity.Name)
	}

	if *summaryOnly {
		printSummary(ctx, app)
		return
	}

	difficulty, err := englishquest.ParseDifficulty(*difficultyFlag)
	if err != nil {
		log.Fatalf("%v", err)
	}

	playQuiz(ctx, app, difficulty)
	printSummary(ctx, app)
}

func playQuiz(ctx context.Context, app *englishquest.App, difficulty englishquest.Difficulty) {
	session := app.NewSession()

	fmt.Printf("🎯 Daily English practice — %s\n", difficulty)
	fmt.Println("⏳ Preparing today's questions... (this may take a moment)")
	fmt.Println()

	beginCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if err := session.Begin(beginCtx, difficulty); err != nil {
		fmt.Printf("❌ %s\n", englishquest.FetchErrorMessage(err))
		os.Exit(1)
	}

	scanner := bufio.NewScanner(os.Stdin)
	letters := []string{"A", "B", "C", "D"}

	for session.Phase() == englishquest.PhasePlaying {
		snap := session.Snapshot()
		question := snap.Question
		options := question.Options

		fmt.Printf("Question %d/%d:\n", snap.Index+1, snap.Total)
		fmt.Printf("%s\n\n", question.Text)
		for i, option := range options {
			fmt.Printf("%s) %s\n", letters[i], option)
		}
		fmt.Println()

		var choice int
		for {
			fmt.Print("Your answer (A/B/C/D): ")
			if !scanner.Scan() {
				fmt.Println()
				return
			}
			answer := strings.ToUpper(strings.TrimSpace(scanner.Text()))
			choice = strings.Index("ABCD", answer)
			if len(answer) == 1 && choice >= 0 {
				break
			}
			fmt.Println("Please enter A, B, C, or D")
		}

		session.Select(options[choice])
		session.Submit()

		snap = session.Snapshot()
		last := snap.Answers[len(snap.Answers)-1]
		if last.IsCorrect {
			fmt.Println("✅ Correct!")
		} else {
			fmt.Printf("❌ Incorrect. The correct answer is %s\n", last.CorrectAnswer)
		}
		fmt.Printf("📊 Score so far: %d/%d\n", snap.Score, snap.Index+1)
		fmt.Println()
		fmt.Println(strings.Repeat("─", 50))
		fmt.Println()

		session.Advance(ctx)
	}

	session.Flush()

	final := session.Snapshot()
	fmt.Println("🎉 Quiz completed!")
	fmt.Printf("🏆 Final score: %d/%d\n", final.Score, final.Total)

	percentage := float64(final.Score) / float64(final.Total)
	if percentage >= 0.8 {
		fmt.Println("🌟 Excellent work!")
	} else if percentage >= 0.6 {
		fmt.Println("👍 Good job!")
	} else {
		fmt.Println("📚 Keep studying!")
	}
	fmt.Println()
}

func printSummary(ctx context.Context, app *englishquest.App) {
	windowDays := app.Config.Quiz.WindowDays
	summary, err := app.Recorder.AggregateRecent(ctx, windowDays)
	if err != nil {
		log.Printf("Failed to load history summary: %v", err)
		return
	}
	fmt.Printf("📅 Last %d days: %d quizzes, %d points\n", windowDays, summary.Count, summary.TotalScore)
}
