// Package minuted provides an embedded client for the transcript
// pipeline: ingest a meeting transcript into Redis-backed vector
// storage, then generate summaries, task lists and ad-hoc prompt
// answers with durable per-namespace caching.
//
// The client wires the same services as the HTTP server, without the
// HTTP layer:
//
//	client, err := minuted.New(ctx,
//		minuted.WithRedis("localhost:6379", ""),
//		minuted.WithEmbedder(myEmbedder),
//		minuted.WithCompleter(myCompleter),
//		minuted.WithPromptRegistry("prompts/prompt_registry.json"),
//	)
//	if err != nil { ... }
//	defer client.Close()
//
//	result, err := client.Process(ctx, namespace, transcript, "meeting.txt")
package minuted
