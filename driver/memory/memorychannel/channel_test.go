package memorychannel_test

import (
	"testing"

	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/driver/memory/memorychannel"
)

func TestChannel(t *testing.T) {
	channel.RunTests(
		t,
		func(t *testing.T) (a, b channel.Channel) {
			return memorychannel.New()
		},
	)
}
