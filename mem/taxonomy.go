package mem

// Groups returns the diagnosis groups present, sorted.
func (c *Cases) Groups() []string {
	return distinct(c.group, func(int) bool { return true })
}

// Categories returns the categories present under group. No group selected, no categories.
func (c *Cases) Categories(group string) []string {
	if group == "" {
		return nil
	}

	return distinct(c.category, func(ind int) bool { return c.group[ind] == group })
}

// Subcategories returns the subcategories present under group and category.
func (c *Cases) Subcategories(group, category string) []string {
	if group == "" || category == "" {
		return nil
	}

	return distinct(c.subcategory, func(ind int) bool { return c.group[ind] == group && c.category[ind] == category })
}
