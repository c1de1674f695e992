// Command mt7927probe is the bring-up driver for the MT7927 PCIe
// function: it claims the device through sysfs, inspects its state and
// runs probe attempts while recording every register write.
package main

func main() {
	Execute()
}
