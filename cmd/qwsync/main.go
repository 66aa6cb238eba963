// Command qwsync runs the QuizWhiz document sync tools.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/roach88/qwsync/internal/cli"
)

func main() {
	gin.SetMode(gin.ReleaseMode)

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
