// Package launcher hands steam:// protocol URIs to the operating system.
// Launch requests are fire-and-forget: the loop that asked for a launch keeps
// polling regardless, so a refused URI is a log line, never an error return.
package launcher

import (
	"fmt"
	"os/exec"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
)

var log = logrus.WithField("component", "launcher")

// Launcher requests the OS to start or foreground the game client.
type Launcher interface {
	// JoinFriend asks the game client to connect to the friend's match.
	JoinFriend(friendID, connectToken string)
	// LaunchGame starts the game without a join target.
	LaunchGame()
}

// JoinURI builds the join protocol URI. The format is consumed byte-for-byte
// by the Steam client; do not change it.
func JoinURI(appID, friendID, connectToken string) string {
	return fmt.Sprintf("steam://rungame/%s/%s/%s", appID, friendID, connectToken)
}

// RunURI builds the plain-launch protocol URI, trailing slash included.
func RunURI(appID string) string {
	return fmt.Sprintf("steam://run/%s/", appID)
}

// OSLauncher opens protocol URIs through the platform's default opener.
type OSLauncher struct {
	AppID string
}

func NewOSLauncher(appID string) *OSLauncher {
	return &OSLauncher{AppID: appID}
}

func (l *OSLauncher) JoinFriend(friendID, connectToken string) {
	metrics.LaunchRequests.WithLabelValues("join").Inc()
	l.open(JoinURI(l.AppID, friendID, connectToken))
}

func (l *OSLauncher) LaunchGame() {
	metrics.LaunchRequests.WithLabelValues("run").Inc()
	l.open(RunURI(l.AppID))
}

func (l *OSLauncher) open(uri string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", uri)
	case "darwin":
		cmd = exec.Command("open", uri)
	default:
		cmd = exec.Command("xdg-open", uri)
	}
	if err := cmd.Start(); err != nil {
		log.Warnf("Failed to open protocol URI %s: %v", uri, err)
		return
	}
	// Releases the child once it exits; we never wait on the result.
	go cmd.Wait()
	log.Infof("Opened protocol URI %s", uri)
}
