package netlist

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"spice/ckt"
	"spice/device"
)

// Write 按 Load 可读入的格式导出电路
func Write(w io.Writer, c *ckt.Circuit) error {
	writer := bufio.NewWriter(w)
	node := func(i int) string { return c.Unknowns()[i].Name }
	num := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	fmt.Fprintf(writer, "* %s\n", c.Name)
	for _, d := range c.Devices() {
		switch d := d.(type) {
		case *device.Resistor:
			fmt.Fprintln(writer, d.Name(), node(d.N1), node(d.N2), num(d.R))
		case *device.VCCS:
			fmt.Fprintln(writer, d.Name(), node(d.N1), node(d.N2), node(d.C1), node(d.C2), num(d.Gm))
		case *device.VSource:
			fmt.Fprintln(writer, d.Name(), node(d.Np), node(d.Nn), "dc", num(d.DC), "ac", num(d.AC))
		case *device.ISource:
			fmt.Fprintln(writer, d.Name(), node(d.Np), node(d.Nn), "dc", num(d.DC), "ac", num(d.AC))
		case *device.Diode:
			fmt.Fprint(writer, d.Name(), " ", node(d.A), " ", node(d.K), " is=", num(d.Is), " n=", num(d.N))
			if d.Off {
				writer.WriteString(" off")
			}
			writer.WriteRune('\n')
		default:
			return fmt.Errorf("device %s cannot be exported", d.Name())
		}
	}
	return writer.Flush()
}
