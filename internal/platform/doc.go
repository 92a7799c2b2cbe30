// Package platform isolates every interaction with the host system and the
// external tools: the yt-dlp extraction binary, the ffmpeg media processor,
// free disk space queries and filesystem staging helpers.
package platform
