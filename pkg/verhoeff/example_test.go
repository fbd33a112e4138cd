package verhoeff_test

import (
	"fmt"

	"idcheck/pkg/verhoeff"
)

func ExampleVerify() {
	digits, _ := verhoeff.ParseDigits("2345 6616 9842")
	ok, _ := verhoeff.Verify(digits)
	fmt.Println(ok)
	// Output: true
}

func ExampleCheckDigit() {
	d, _ := verhoeff.CheckDigit([]int{2, 3, 6})
	fmt.Println(d)
	// Output: 3
}
