// Command wavedaq is the CLI for controlling the acquisition daemon over
// its Unix socket.
package main
