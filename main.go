package main

import (
	"context"
	"os"

	"github.com/FabianBoni/Flashloab-arbitrage/cmd"
	"github.com/FabianBoni/Flashloab-arbitrage/utils"
)

func main() {
	defer utils.CleanupLogger()

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
