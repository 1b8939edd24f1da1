package models

// Cities we deliver to.
var Cities = []string{
	"Dubai",
	"Abu Dhabi",
	"Sharjah",
	"Ajman",
	"Umm Al Quwain",
	"Ras Al Khaimah",
	"Fujairah",
}

// ExpressCities is the subset of Cities served by express delivery.
var ExpressCities = []string{"Dubai", "Sharjah", "Ajman", "Umm Al Quwain"}

var DeliveryTimeSlots = []string{"9AM-12PM", "12PM-3PM", "3PM-6PM", "6PM-9PM"}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func ValidCity(city string) bool { return contains(Cities, city) }
func ExpressCity(city string) bool { return contains(ExpressCities, city) }
func ValidTimeSlot(slot string) bool { return contains(DeliveryTimeSlots, slot) }
