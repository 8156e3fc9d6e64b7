// Package cookies validates and stores the browser cookie export that yt-dlp
// uses to get past YouTube bot checks.
package cookies
