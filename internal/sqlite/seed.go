// File path: internal/sqlite/seed.go
package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/geekygoose/gander/internal/common"
)

type seedRequirement struct {
	code          string
	text          string
	maturityLevel int
	guidance      string
}

type seedControl struct {
	code         string
	title        string
	description  string
	requirements []seedRequirement
}

var essentialEightSeed = []seedControl{
	{
		code:        "EE-1",
		title:       "Application Control",
		description: "Prevent execution of unapproved and malicious programs on workstations and servers.",
		requirements: []seedRequirement{
			{"EE-1.1", "Application control is implemented on workstations to restrict the execution of executables, software libraries, scripts and installers to an organisation-approved set.", 1, "Allowlisting solutions such as AppLocker or WDAC satisfy this requirement."},
			{"EE-1.2", "Application control is implemented on internet-facing servers.", 2, ""},
			{"EE-1.3", "Application control rulesets are validated on an annual or more frequent basis.", 3, "Evidence may include ruleset review records or change tickets."},
		},
	},
	{
		code:        "EE-2",
		title:       "Patch Applications",
		description: "Patch or mitigate vulnerabilities in applications within defined timeframes.",
		requirements: []seedRequirement{
			{"EE-2.1", "Patches for vulnerabilities in internet-facing services are applied within two weeks of release, or within 48 hours if an exploit exists.", 1, ""},
			{"EE-2.2", "A vulnerability scanner is used at least weekly to identify missing patches for internet-facing services.", 1, ""},
			{"EE-2.3", "Applications that are no longer supported by vendors are removed.", 2, ""},
		},
	},
	{
		code:        "EE-3",
		title:       "Configure Microsoft Office Macro Settings",
		description: "Block macros from the internet and only allow vetted macros from trusted locations.",
		requirements: []seedRequirement{
			{"EE-3.1", "Microsoft Office macros are disabled for users that do not have a demonstrated business requirement.", 1, ""},
			{"EE-3.2", "Microsoft Office macros in files originating from the internet are blocked.", 1, ""},
			{"EE-3.3", "Microsoft Office macro antivirus scanning is enabled.", 2, ""},
		},
	},
	{
		code:        "EE-4",
		title:       "User Application Hardening",
		description: "Configure web browsers and applications to reduce the attack surface.",
		requirements: []seedRequirement{
			{"EE-4.1", "Web browsers do not process Java from the internet.", 1, ""},
			{"EE-4.2", "Web browsers do not process web advertisements from the internet.", 1, ""},
			{"EE-4.3", "Internet Explorer 11 is disabled or removed.", 2, ""},
		},
	},
	{
		code:        "EE-5",
		title:       "Restrict Administrative Privileges",
		description: "Limit privileged access to systems and applications to validated personnel and purposes.",
		requirements: []seedRequirement{
			{"EE-5.1", "Requests for privileged access to systems and applications are validated when first requested.", 1, ""},
			{"EE-5.2", "Privileged accounts are prevented from accessing the internet, email and web services.", 1, ""},
			{"EE-5.3", "Privileged access to systems and applications is automatically disabled after 12 months unless revalidated.", 2, ""},
		},
	},
	{
		code:        "EE-6",
		title:       "Patch Operating Systems",
		description: "Patch or mitigate vulnerabilities in operating systems within defined timeframes.",
		requirements: []seedRequirement{
			{"EE-6.1", "Patches for vulnerabilities in operating systems of internet-facing services are applied within two weeks of release, or within 48 hours if an exploit exists.", 1, ""},
			{"EE-6.2", "Operating systems that are no longer supported by vendors are replaced.", 1, ""},
		},
	},
	{
		code:        "EE-7",
		title:       "Multi-Factor Authentication",
		description: "Require multi-factor authentication for users of remote access and important data repositories.",
		requirements: []seedRequirement{
			{"EE-7.1", "Multi-factor authentication is used to authenticate users to their organisation's online services that process, store or communicate sensitive data.", 1, ""},
			{"EE-7.2", "Multi-factor authentication is used to authenticate privileged users of systems.", 2, ""},
			{"EE-7.3", "Multi-factor authentication used is phishing-resistant.", 3, "Evidence may include authenticator policy or identity provider configuration."},
		},
	},
	{
		code:        "EE-8",
		title:       "Regular Backups",
		description: "Perform and retain backups of important data, software and configuration settings, and test restoration.",
		requirements: []seedRequirement{
			{"EE-8.1", "Backups of important data, software and configuration settings are performed and retained in accordance with business criticality and continuity requirements.", 1, ""},
			{"EE-8.2", "Restoration of important data, software and configuration settings from backups is tested as part of disaster recovery exercises.", 1, ""},
			{"EE-8.3", "Unprivileged accounts cannot access backups belonging to other accounts, nor modify or delete backups.", 2, ""},
		},
	},
}

// SeedEssentialEight loads the baseline Essential Eight framework on first
// start. Subsequent starts detect the existing framework and skip seeding.
func (s *Store) SeedEssentialEight(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store not initialised")
	}
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM frameworks WHERE name = ?`, "Essential Eight"); err != nil {
		return fmt.Errorf("check seed state: %w", err)
	}
	if count > 0 {
		return nil
	}
	logger := common.Logger()
	logger.Info("sqlite: seeding Essential Eight framework")
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		frameworkID := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frameworks(id, name, version, description) VALUES(?, ?, ?, ?)`,
			frameworkID, "Essential Eight", "ML1-ML3",
			"Australian Cyber Security Centre Essential Eight mitigation strategies."); err != nil {
			return fmt.Errorf("insert framework: %w", err)
		}
		for _, control := range essentialEightSeed {
			controlID := uuid.NewString()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO controls(id, framework_id, code, title, description) VALUES(?, ?, ?, ?, ?)`,
				controlID, frameworkID, control.code, control.title, control.description); err != nil {
				return fmt.Errorf("insert control %s: %w", control.code, err)
			}
			for _, req := range control.requirements {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO requirements(id, control_id, req_code, text, maturity_level, guidance)
                                        VALUES(?, ?, ?, ?, ?, ?)`,
					uuid.NewString(), controlID, req.code, req.text, req.maturityLevel, req.guidance); err != nil {
					return fmt.Errorf("insert requirement %s: %w", req.code, err)
				}
			}
		}
		return nil
	})
}
