package redis

import "fmt"

const ns = "checkin:v1"

func KeyDecision(cacheKey string) string {
	return ns + ":decision:" + cacheKey
}

func ChannelEvents(eventID int64) string {
	return fmt.Sprintf("%s:events:%d", ns, eventID)
}

func channelEventsPattern() string {
	return ns + ":events:*"
}
