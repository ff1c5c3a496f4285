// Command urlprobe fetches a batch of URLs and reports what came back.
//
// Architecture overview:
//   - CLI: cmd builds a cobra root with a fetch subcommand. Flags, URLPROBE_* env vars and an optional YAML file
//     are merged by internal/config on a fresh Viper instance; LOGLEVEL is honored as well.
//   - Engine: internal/probe launches one goroutine per URL through an errgroup. A weighted semaphore caps the
//     number of requests in flight, and each goroutine writes its result into a pre-sized slice at its input index,
//     so the report keeps input order however the requests interleave.
//   - Retry: every attempt gets its own deadline. Attempt errors are tagged success, retryable or terminal; only
//     retryable ones are retried, immediately by default or with jittered exponential backoff when configured.
//   - Fetch backends: internal/fetcher/nethttp (default) and internal/fetcher/colly share one pooled transport
//     built in internal/fetcher, with compression disabled so the counted body length is the wire length.
//   - Output: internal/report encodes the JSON array and hands it to a BlobStore chosen from the destination
//     (local file, stdout or GCS). A Prometheus textfile and a Pub/Sub completion message are optional.
//
// Operational notes:
//   - SIGINT/SIGTERM cancel the run. Unfinished URLs end with a terminal error and the report is still written.
//   - Per-URL failures never change the exit code; an unreadable input, an empty URL list or an unwritable output do.
//   - TLS verification is on unless --insecure is passed.
//
// Quick checklist:
//   - Run locally: go run . fetch -i urls.txt -o result.json
//   - Tune: -c for concurrency, -a for attempts, --timeout per attempt, --backoff for spacing retries.
//   - Observe: -v or LOGLEVEL=debug for per-request logs, --metrics-file for node-exporter textfile metrics.
package main
