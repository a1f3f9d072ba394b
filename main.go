package main

import (
	"fmt"

	"github.com/sunobot/wa-event-gateway/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
