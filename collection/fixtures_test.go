package collection

func animalSpecies() []Record {
	return []Record{
		{"id": 1, "name": "Goldfish", "class": "Actinopterygii", "diet": "Omnivore", "legs": 0},
		{"id": 2, "name": "Tiger", "class": "Mammalia", "diet": "Carnivore", "legs": 4},
		{"id": 3, "name": "Eagle", "class": "Aves", "diet": "Carnivore", "legs": 2},
		{"id": 4, "name": "Frog", "class": "Amphibia", "diet": "Carnivore", "legs": 4},
		{"id": 5, "name": "Cow", "class": "Mammalia", "diet": "Herbivore", "legs": 4},
	}
}

func honeyBadger() Record {
	return Record{"name": "Honey Badger", "class": "Mammalia", "diet": "Omnivore", "legs": 4}
}
