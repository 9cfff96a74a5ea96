// Command mediagraph builds and runs media graphs from project files.
package main

func main() {
	Execute()
}
