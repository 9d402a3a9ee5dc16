// Command tweetgen serves and runs a GPT-2 model fine-tuned on tweets.
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
