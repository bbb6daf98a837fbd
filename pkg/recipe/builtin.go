package recipe

// builtinRecipes ship with bk.
const builtinRecipes = `
recipes:
  infrastructuur:
    description: "Wegen, riolering en straatverlichting"
    filters:
      categories: [wegenbouw, riolering, verlichting]
  scholen:
    description: "Scholenbouw, grootste eerst"
    filters:
      categories: [scholenbouw]
  sport-cultuur:
    description: "Sport- en culturele infrastructuur"
    filters:
      categories: [sport, cultuur]
  groen:
    description: "Groene ruimte en gebiedsontwikkeling"
    filters:
      categories: [groen, ruimtelijke-ordening]
  zorg:
    description: "Sociale infrastructuur en zorg"
    filters:
      categories: [zorg]
  brussel:
    description: "Brussels Hoofdstedelijk Gewest per gemeente"
    filters:
      province: "21000"
    sort: municipality
`
