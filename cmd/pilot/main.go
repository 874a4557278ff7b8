package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"browser-pilot/internal/di"
	"browser-pilot/internal/domain/entity"
	"browser-pilot/internal/infrastructure/env"
	"browser-pilot/internal/infrastructure/llm"
)

func main() {
	envService := env.NewEnvService()

	fmt.Println("\nEnter a goal for the browser agent:")
	reader := bufio.NewReader(os.Stdin)
	goal, err := reader.ReadString('\n')
	if err != nil {
		log.Fatal("failed to read input: ", err)
	}
	goal = strings.TrimSpace(goal)

	ctx, cancel := context.WithTimeout(context.Background(), envService.GetDuration("RUN_TIMEOUT", 30*time.Minute))
	defer cancel()

	container, err := di.NewContainer(ctx, di.Config{
		Provider:    llm.Provider(envService.GetDefault("MODEL_PROVIDER", string(llm.ProviderOpenAI))),
		APIKey:      envService.MustGet("MODEL_API_KEY"),
		Model:       envService.MustGet("MODEL_NAME"),
		BaseURL:     envService.Get("MODEL_BASE_URL"),
		RunName:     goal,
		Headless:    envService.GetBool("BROWSER_HEADLESS", true),
		Debug:       envService.GetBool("DEBUG", false),
		MaxSteps:    envService.GetInt("AGENT_MAX_STEPS", 20),
		SelfHeal:    envService.GetBool("ACT_SELF_HEAL", true),
		Screenshots: envService.GetBool("AGENT_SCREENSHOTS", false),
	})
	if err != nil {
		log.Fatalf("initialization failed: %v", err)
	}
	defer container.Close()

	if startURL := envService.Get("START_URL"); startURL != "" {
		if err := container.Browser.Navigate(ctx, startURL); err != nil {
			container.Logger.Error("Initial navigation failed", "url", startURL, "error", err)
			os.Exit(1)
		}
	}

	container.Logger.Info("Goal accepted", "goal", goal)

	result, err := container.Agent.Execute(ctx, goal)
	if err != nil {
		container.Logger.Error("Run failed", "error", err, "steps", len(result.Steps))
		fmt.Printf("\nRun failed after %d steps: %v\n", len(result.Steps), err)
		printMetrics(container.Metrics.Snapshot())
		os.Exit(1)
	}

	fmt.Println("\nFINAL RESULT:")
	fmt.Println(result.FinalResult)
	fmt.Printf("\n%d steps, run %s\n", len(result.Steps), result.RunID)
	printMetrics(container.Metrics.Snapshot())
}

func printMetrics(snapshot entity.MetricsSnapshot) {
	fmt.Println("\nToken usage:")
	for _, op := range entity.Operations() {
		m := snapshot[op]
		if m.PromptTokens == 0 && m.CompletionTokens == 0 {
			continue
		}
		fmt.Printf("  %-8s prompt=%d completion=%d inference=%dms\n",
			op, m.PromptTokens, m.CompletionTokens, m.InferenceTimeMs)
	}
}
