package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/wearevision/wav-btl-ingest/internal/config"
	"github.com/wearevision/wav-btl-ingest/internal/media"
	"github.com/wearevision/wav-btl-ingest/internal/vision"
	"github.com/wearevision/wav-btl-ingest/internal/wav"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <event-dir>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set")
		os.Exit(1)
	}

	assets, err := media.ScanDir(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to scan directory: %v\n", err)
		os.Exit(1)
	}
	images, err := media.LoadImages(assets, 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load images: %v\n", err)
		os.Exit(1)
	}
	if len(images) == 0 {
		fmt.Fprintln(os.Stderr, "No images found in directory")
		os.Exit(1)
	}

	ctx := context.Background()
	classifier, err := vision.NewGeminiClassifier(ctx, apiKey,
		config.DefaultMaxRetries, config.DefaultRetryBackoff, config.DefaultCallTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating classifier: %v\n", err)
		os.Exit(1)
	}

	result, err := classifier.Classify(ctx, images, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error classifying images: %v (%s)\n", err, wav.ErrorKind(err))
		os.Exit(1)
	}

	printClassification(result, len(images))
}

func printClassification(c *wav.Classification, imageCount int) {
	fmt.Printf("Images:      %d\n", imageCount)
	fmt.Printf("Brand:       %s\n", c.BrandGuess)
	fmt.Printf("Title base:  %s\n", c.TitleBase)
	fmt.Printf("Year:        %d\n", c.Year)
	fmt.Printf("Category:    %s\n", c.Category)
	fmt.Printf("Logo:        %t\n", c.LogoDetected)
	fmt.Printf("Colors:      %s\n", strings.Join(c.DominantColors, ", "))
	fmt.Printf("Elements:    %s\n", strings.Join(c.MainElements, ", "))
	fmt.Printf("Keywords:    %s\n", strings.Join(c.Tags, ", "))
	fmt.Printf("Confidence:  %.2f\n", c.Confidence)
}
