// Command homepage-tone harvests homepage text and classifies its tone.
//
// Architecture overview:
//   - CLI: cmd hosts the cobra root with a --config flag. PersistentPreRunE loads config via Viper (env prefix
//     HARVEST), builds internal/app.App and stores it in the command context; services are closed once the
//     subcommand returns.
//   - fetch: internal/ingest reads the URL list (file or stdin), internal/pipeline.Fetcher walks it sequentially.
//     Each URL gets a fresh browser session from internal/render (chromedp by default, playwright or a static colly
//     fetch as alternatives) which waits for network idle, falls back to DOMContentLoaded on timeout and otherwise
//     keeps whatever the page holds. internal/extract pulls title and text with goquery and internal/record appends
//     one JSON line per page.
//   - classify: internal/pipeline.Classifier reads the fetch log, internal/sanitize cleans and bounds the text,
//     internal/classify posts it to an OpenAI-compatible chat/completions endpoint, internal/jsonobj recovers the
//     JSON object from the reply and internal/verdict normalizes it. The augmented records replace the output file.
//   - Observability: zap logs go to stderr so stdout carries only progress lines and the summary. Lifecycle events
//     flow through the non-blocking progress Hub to a log sink and a Prometheus sink; metrics.textfile exports the
//     registry for the node-exporter textfile collector when the run ends.
//
// Quick checklist:
//   - Start a local OpenAI-compatible server (LM Studio, llama.cpp, vLLM) or set HARVEST_CLASSIFIER_BASE_URL and
//     HARVEST_CLASSIFIER_API_KEY.
//   - homepage-tone fetch urls.txt --out out/homepages.jsonl --sleep 1
//   - homepage-tone classify --in out/homepages.jsonl --out out/homepages_with_sentiment.jsonl
//   - Use renderer.engine=static where no Chrome is installed; pages are then fetched without running scripts.
package main
