package main

import (
	"flag"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/cfboot/pkg/boot"
	"github.com/robotalks/cfboot/pkg/env"
	"github.com/robotalks/cfboot/pkg/events"
	fx "github.com/robotalks/cfboot/pkg/framework"
	"github.com/robotalks/cfboot/pkg/sim"
	"github.com/robotalks/cfboot/pkg/transport"
)

//go-build: CGO_ENABLED=0

var bootPinLow bool

func init() {
	env.SetupFlags()
	flag.BoolVar(&bootPinLow, "boot-pin-low", bootPinLow, "Boot select pin reads low, which starts a present application.")
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf := env.Default()
	runner := fx.NewRunner().HandleSignals()

	caster := &events.Caster{}
	caster.Subscribe(events.Logger)
	if pub, closer := sim.ConnectEvents(caster, conf.MQTTBrokerURL, conf.Device(), sim.BrokerTimeout); pub != nil {
		defer closer.Close()
		runner.Go(fx.NamedRun("events", pub))
	}

	dev := sim.NewDevice(conf.FlashTimeout)
	dev.BootPinLow = bootPinLow
	dev.FlowControl = conf.FlowControl
	dev.Events = caster
	if err := dev.Flash.LoadFile(conf.FlashFile); err != nil {
		log.Fatalln(err)
	}

	if dev.Boot() == boot.ModeApplication {
		v, _ := dev.Application()
		log.Printf("application started: sp=%#08x entry=%#08x", v.StackPointer, v.Entry)
		if err := runner.Wait(); err != nil {
			log.Fatalln(err)
		}
		return
	}

	ln, err := transport.Listen(conf.LinkURL)
	if err != nil {
		log.Fatalln(err)
	}
	srv := &sim.Server{Device: dev, Listener: ln, FlashFile: conf.FlashFile}
	runner.Go(fx.NamedRun("link", srv))
	err = runner.Wait()
	if saveErr := srv.Save(); saveErr != nil {
		glog.Errorf("save flash: %v", saveErr)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
