// Package mojo implements the host side of the Mojo boot ROM loader protocol.
package mojo

// The boot ROM speaks a minimal command/acknowledgement protocol over a
// point-to-point serial link (115200 baud, 8N1). Every command and every
// acknowledgement is a single byte, except the 4-byte little-endian length
// fields and the raw payload itself.
//
//   host -> device   '!'            interrupt boot, enter command mode
//   device -> host   'R'            ready
//   host -> device   'C'            erase flash
//   device -> host   'D'            erase done
//   host -> device   'W' | 'I'      write flash | write volatile, followed by length
//   device -> host   'O'            size acknowledged
//   host -> device   payload        raw bitstream
//   device -> host   'D'            transfer done
//   host -> device   'R'            read back flash, followed by length + 5
//   device -> host   0xAA size data verify stream
//   host -> device   'L'            launch FPGA from flash
//   device -> host   'O'            launch acknowledged
//   host -> device   'S'            start run, no acknowledgement
//
// Before the handshake, the device is pulled into its boot ROM by pulsing
// the DTR line (see ResetDevice).
//
// Producer: Mojo boot ROM
// Consumer: Loader
