package docgen

import "time"

// MockDocument is the static fallback served when a real document cannot
// be assembled (missing company, missing tree, malformed persisted data).
func MockDocument() *Document {
	return &Document{
		Company:     "Demo Manufacturing Co.",
		GeneratedAt: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Sections: []Section{
			{
				TopicID: "demo-safety",
				Title:   "Plant Safety",
				HTML: `<h4>Key Facts</h4>
<ul>
<li><strong>Lockout points</strong>: Every press line has six lockout points; the master list hangs at the east entrance.</li>
</ul>
<h4>Shutdown procedure</h4>
<p>Bleed the hydraulic accumulator before opening the guard, then verify zero pressure on gauge B4.</p>
`,
				Subsections: []Section{
					{
						TopicID: "demo-safety-ppe",
						Title:   "Protective Equipment",
						HTML:    `<p class="placeholder">No knowledge captured for this topic yet.</p>`,
					},
				},
			},
			{
				TopicID: "demo-maintenance",
				Title:   "Preventive Maintenance",
				HTML: `<h4>Best Practices</h4>
<ul>
<li><strong>Grease schedule</strong>: Bearings on line 2 are greased every 400 operating hours, not by calendar.</li>
</ul>
`,
			},
		},
	}
}
