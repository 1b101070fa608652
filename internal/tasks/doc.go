// Package tasks runs long VideoTube operations with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines three operations:
//
//  1. [Engine.BulkExport] : Export many playlists at once
//     - Fetches each playlist, paced by a rate limiter
//     - Writes JSON, CSV, Markdown or text files from a worker pool
//     - Records per-playlist failures and writes export_manifest.json
//
//  2. [Engine.Upload] : Publish a video
//     - Streams the multipart body and reports byte progress
//
//  3. [Engine.Backup] : Fetch the signed-in account's data
//     - Profile, watch history, dashboard stats and uploads
//     - Endpoint failures are collected, not fatal
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default so a slow reader never stalls an operation.
//
// # Implementation
//
// [VideoEngine] implements [Engine] with dependencies on:
//   - [Library] : playlist and publish calls (services.VideoTubeService)
//   - [APIClient] : raw authenticated GETs (services.APIService)
package tasks
