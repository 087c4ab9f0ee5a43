package server

import "fmt"

const (
	red     = "\033[31m"
	green   = "\033[32m"
	yellow  = "\033[33m"
	blue    = "\033[34m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
	gray    = "\033[90m"

	resetColour = "\033[0m"
)

var methodColours = map[string]string{
	"GET":    green,
	"POST":   blue,
	"PUT":    cyan,
	"DELETE": yellow,
	"PATCH":  magenta,
}

// colourRoute renders a method and path for the DEV route listing
func colourRoute(method, path string) string {
	colour, ok := methodColours[method]
	if !ok {
		colour = gray
	}
	return fmt.Sprintf("[%s %-7s%s] %s", colour, method, resetColour, path)
}

// colourStatus highlights server errors in DEV request logs
func colourStatus(status int) string {
	switch {
	case status >= 500:
		return fmt.Sprintf("%s%d%s", red, status, resetColour)
	case status >= 400:
		return fmt.Sprintf("%s%d%s", yellow, status, resetColour)
	}
	return fmt.Sprintf("%s%d%s", green, status, resetColour)
}
