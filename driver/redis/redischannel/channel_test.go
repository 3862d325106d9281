package redischannel_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/driver/redis/redischannel"
	"github.com/skinsch/dbproxy/internal/x/xtesting"
)

func TestChannel(t *testing.T) {
	srv := miniredis.RunT(t)

	client := redis.NewClient(
		&redis.Options{
			Addr: srv.Addr(),
		},
	)
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Error(err)
		}
	})

	channel.RunTests(
		t,
		func(t *testing.T) (a, b channel.Channel) {
			prefix := xtesting.SequentialName("channel")
			return redischannel.NewWorker(client, prefix),
				redischannel.NewOwner(client, prefix)
		},
	)
}
