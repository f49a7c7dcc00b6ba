package main

import (
	"os"

	"SentimentPipeline/internal/app"
)

func main() {
	os.Exit(app.Execute(app.NewCommand("enrichment-consumer", "Enrich stored articles with ticker sentiment facts", app.NewEnrichmentConsumer)))
}
