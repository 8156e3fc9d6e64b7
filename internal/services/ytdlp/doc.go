// Package ytdlp wraps the yt-dlp command-line tool. Extract downloads the
// audio track of a video URL as FLAC into the temp directory, optionally with a
// cookie jar, under a hard timeout.
package ytdlp
