package main

import (
	"os"

	"SentimentPipeline/internal/app"
)

func main() {
	os.Exit(app.Execute(app.NewCommand("crawl-scheduler", "Crawl configured news sources on fixed intervals", app.NewCrawlScheduler)))
}
