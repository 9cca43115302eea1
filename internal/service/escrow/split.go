package escrow

import "github.com/shopspring/decimal"

// driverRate is the driver's fixed share of a released escrow.
var driverRate = decimal.New(1, -1) // 0.1

// Split divides a released amount between producer and driver.
type Split struct {
	Producer decimal.Decimal
	Driver   decimal.Decimal
}

// ComputeSplit returns the 90/10 producer/driver division of amount. The
// driver share is truncated to whole cents and the producer takes the rest,
// so the two shares always sum exactly to the original amount.
func ComputeSplit(amount decimal.Decimal) Split {
	driver := amount.Mul(driverRate).RoundDown(2)
	return Split{
		Producer: amount.Sub(driver),
		Driver:   driver,
	}
}
