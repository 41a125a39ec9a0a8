package solaredge

import "solarweb-backend/lib/restyutil"

var restyInstrumentOutput restyutil.InstrumentOutput

// must be called before NewClient for the output to take effect
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}
