package utils

import (
	"syscall"

	"github.com/rs/zerolog/log"
)

// tuneSocket sizes the receive buffer to one read chunk before connecting.
// A refusal by the OS is logged and ignored.
func tuneSocket(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setReceiveBuffer(fd)
	})
	if err == nil {
		err = sockErr
	}
	if err != nil {
		log.Debug().Str("op", "utils/socket").Str("addr", address).Err(err).Msg("Could not set receive buffer")
	}
	return nil
}
