package net

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
)

// LinkScheme prefixes share links.
const LinkScheme = "localboard://"

// DefaultRoom is used when a link names no room.
const DefaultRoom = "default-room"

var ErrBadLink = errors.New("not a localboard link")

// GetOutgoingIP finds the preferred local IP address for the host to share.
func GetOutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		// No route out; fall back to the interface list.
		return getLocalIPFallback()
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func getLocalIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, address := range addrs {
		if ipnet, ok := address.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	log.Println("[NET] No suitable local IP found, share link will use loopback")
	return "127.0.0.1", nil
}

// ShareLink builds localboard://host:port/room.
func ShareLink(host string, port int, room string) string {
	return fmt.Sprintf("%s%s/%s", LinkScheme, net.JoinHostPort(host, strconv.Itoa(port)), room)
}

// ParseLink splits a share link into host:port and room.
func ParseLink(link string) (addr, room string, err error) {
	rest, ok := strings.CutPrefix(link, LinkScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrBadLink, link)
	}
	addr, room, _ = strings.Cut(strings.TrimSuffix(rest, "/"), "/")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrBadLink, err)
	}
	if room == "" {
		room = DefaultRoom
	}
	if strings.Contains(room, "/") {
		return "", "", fmt.Errorf("%w: %v", ErrBadLink, ErrBadRoom)
	}
	return addr, room, nil
}

// RoomURL returns the websocket URL of room on the hub at addr.
func RoomURL(addr, room string) string {
	return "ws://" + addr + RoomPrefix + room
}
