package all

import (
	// Import all the converters so they register themselves
	_ "github.com/darianmavgo/hotelload/converters/csv"
	_ "github.com/darianmavgo/hotelload/converters/excel"
	_ "github.com/darianmavgo/hotelload/converters/json"
	_ "github.com/darianmavgo/hotelload/converters/sqlite"
)
