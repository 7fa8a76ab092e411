package sim

import (
	"context"

	"github.com/golang/glog"

	fx "github.com/robotalks/cfboot/pkg/framework"
	"github.com/robotalks/cfboot/pkg/transport"
)

// Server serves one link session at a time from a listener, saving the
// flash image after each.
type Server struct {
	Device    *Device
	Listener  transport.Listener
	FlashFile string
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, s.Listener, func() error {
		glog.Infof("serving link on %s", s.Listener.Addr())
		for {
			stream, err := s.Listener.Accept()
			if err != nil {
				return err
			}
			glog.Infof("link connected")
			err = s.Device.Serve(ctx, stream)
			stream.Close()
			if err != nil {
				glog.Warningf("link session: %v", err)
			} else {
				glog.Infof("link disconnected")
			}
			if err = s.Save(); err != nil {
				glog.Errorf("save flash: %v", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	})
}

// Save writes the flash image if a file is configured.
func (s *Server) Save() error {
	if s.FlashFile == "" {
		return nil
	}
	return s.Device.Flash.SaveFile(s.FlashFile)
}
