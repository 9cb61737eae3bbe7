package loyalty

import "errors"

var ErrInsufficientPoints = errors.New("insufficient loyalty points")
