package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/satfusion/internal/log"
	"github.com/forest-guardian/satfusion/internal/notification"
	"github.com/forest-guardian/satfusion/internal/properties"
)

func printBanner() {
	figure1 := figure.NewFigure("Sat", "isometric1", true)
	figure2 := figure.NewFigure("Fusion", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	pc, file, line, ok := runtime.Caller(3)
	location := "Unknown location"
	if ok {
		location = fmt.Sprintf("%s:%d in %s", file, line, runtime.FuncForPC(pc).Name())
	}

	fmt.Printf("\n\033[31mPANIC: %v\033[0m\n", r)
	fmt.Printf("\033[31mLocation: %s\033[0m\n", location)
	fmt.Printf("\033[31mPlease check the input and try again.\033[0m\n")
	fmt.Printf("\033[31mExiting...\033[0m\n")

	errMessage := fmt.Sprintf("panic:\n\n%v\n\nLocation: %s\n\nStack trace:\n%s", r, location, debug.Stack())
	n := notification.NewDiscord(properties.Discord{ErrorURL: os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")})
	if err := n.Error(errMessage); err != nil {
		fmt.Printf("\033[31mFailed to send notification: %s\033[0m\n", err.Error())
	}
	log.Sync()
	os.Exit(2)
}

func main() {
	defer recoverPanic()

	if err := properties.LoadEnvFiles(); err != nil {
		fmt.Printf("\033[33m%s\033[0m\n", err.Error())
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Printf("\n\033[31mError: %s\033[0m\n", err.Error())
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}
