// Package buffer provides a generic growable FIFO used as the staging
// queue between audio capture callbacks and the resampling chunker.
package buffer
