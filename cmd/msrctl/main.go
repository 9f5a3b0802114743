// Command msrctl drives an MSR605X magnetic stripe reader/writer from
// the command line.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"

	"github.com/samuelequaranta/go-msr605x/msr605x"
	"github.com/samuelequaranta/go-msr605x/track"
)

const usage = `usage: msrctl [flags] <command> [args]

commands:
  list                      list attached readers
  read                      wait for a swipe and print the tracks
  write <t1> <t2> <t3>      write tracks (use "" to skip a track)
  verify <t1> <t2> <t3>     write then re-read to confirm
  erase [1|2|3|all ...]     erase the selected tracks (default all)
  firmware                  print the firmware revision
  model                     print the device model
  test [comm|ram|sensor]    run a self test (default comm)
  coercivity [hi|lo]        get or set coercivity
  led [green|yellow|red|all|off]
  reset                     reset the device

flags:
`

var (
	devicePath = flag.String("device", "", "HID path of the reader (default: first found)")
	rawMode    = flag.Bool("raw", false, "use raw track mode instead of ISO")
	verbose    = flag.Bool("v", false, "verbose logging")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
	})))

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "msrctl:", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	session, err := msr605x.NewSession()
	if err != nil {
		return err
	}
	defer session.Close()

	if cmd == "list" {
		return list(session)
	}

	if err := session.Connect(*devicePath); err != nil {
		return err
	}

	mode := track.FormatISO
	if *rawMode {
		mode = track.FormatRaw
	}

	switch cmd {
	case "read":
		fmt.Println("swipe a card...")
		return report(session.Read(mode), func(r *msr605x.Result) {
			fmt.Println(track.FormatDisplay(r.Tracks))
		})
	case "write":
		p, err := payloadArgs(args)
		if err != nil {
			return err
		}
		fmt.Println("swipe a card to write...")
		return report(session.Write(p, mode), nil)
	case "verify":
		p, err := payloadArgs(args)
		if err != nil {
			return err
		}
		fmt.Println("swipe a card to write, then swipe again to verify...")
		return report(session.WriteVerified(p, mode), nil)
	case "erase":
		mask, err := eraseMask(args)
		if err != nil {
			return err
		}
		fmt.Println("swipe a card to erase...")
		return report(session.Erase(mask), nil)
	case "firmware":
		return report(session.FirmwareVersion(), func(r *msr605x.Result) {
			fmt.Println(r.Firmware)
		})
	case "model":
		return report(session.Model(), func(r *msr605x.Result) {
			fmt.Println(r.Model)
		})
	case "test":
		return selfTest(session, args)
	case "coercivity":
		return coercivity(session, args)
	case "led":
		return led(session, args)
	case "reset":
		return report(session.Reset(), nil)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func list(session *msr605x.Session) error {
	devs, err := session.Enumerate()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Println("no readers found")
		return nil
	}
	for _, d := range devs {
		fmt.Printf("%04x:%04x  %s  %s\n", d.VendorID, d.ProductID, d.Product, d.Path)
	}
	return nil
}

// report prints the result message, runs onOK for successes, and turns
// device failures into a process exit code.
func report(r *msr605x.Result, onOK func(*msr605x.Result)) error {
	if !r.OK {
		return fmt.Errorf("%s (%s)", r.Message, r.Code)
	}
	if onOK != nil {
		onOK(r)
	} else {
		fmt.Println(r.Message)
	}
	return nil
}

func payloadArgs(args []string) (track.Payload, error) {
	if len(args) == 0 || len(args) > 3 {
		return track.Payload{}, fmt.Errorf("write expects 1 to 3 track arguments")
	}
	for len(args) < 3 {
		args = append(args, "")
	}
	p := track.TextPayload(args[0], args[1], args[2])
	if p.IsEmpty() {
		return track.Payload{}, fmt.Errorf("at least one track must be non-empty")
	}
	return p, nil
}

func eraseMask(args []string) (msr605x.TrackMask, error) {
	if len(args) == 0 {
		return msr605x.AllTracks, nil
	}
	var mask msr605x.TrackMask
	for _, a := range args {
		switch strings.ToLower(a) {
		case "1":
			mask |= msr605x.Track1
		case "2":
			mask |= msr605x.Track2
		case "3":
			mask |= msr605x.Track3
		case "all":
			mask = msr605x.AllTracks
		default:
			return 0, fmt.Errorf("unknown track %q", a)
		}
	}
	return mask, nil
}

func selfTest(session *msr605x.Session, args []string) error {
	which := "comm"
	if len(args) > 0 {
		which = strings.ToLower(args[0])
	}
	switch which {
	case "comm":
		return report(session.TestCommunication(), nil)
	case "ram":
		return report(session.TestRAM(), nil)
	case "sensor":
		fmt.Println("swipe a card...")
		return report(session.TestSensor(), nil)
	default:
		return fmt.Errorf("unknown test %q", which)
	}
}

func coercivity(session *msr605x.Session, args []string) error {
	if len(args) == 0 {
		return report(session.GetCoercivity(), nil)
	}
	switch strings.ToLower(args[0]) {
	case "hi":
		return report(session.SetCoercivity(msr605x.HiCo), nil)
	case "lo":
		return report(session.SetCoercivity(msr605x.LoCo), nil)
	default:
		return fmt.Errorf("coercivity must be hi or lo, got %q", args[0])
	}
}

func led(session *msr605x.Session, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("led expects a color or off")
	}
	switch strings.ToLower(args[0]) {
	case "off":
		return report(session.LEDOff(), nil)
	case "green":
		return report(session.LEDOn(msr605x.LEDGreen), nil)
	case "yellow":
		return report(session.LEDOn(msr605x.LEDYellow), nil)
	case "red":
		return report(session.LEDOn(msr605x.LEDRed), nil)
	case "all":
		return report(session.LEDOn(msr605x.LEDAll), nil)
	default:
		return fmt.Errorf("unknown LED color %q", args[0])
	}
}
