package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cursory/internal/course"
)

// newResourcesCommand はresourcesコマンドを生成する。
func newResourcesCommand(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resources",
		Aliases: []string{"resource"},
		Short:   "コースの学習リソースを管理する",
	}
	cmd.AddCommand(
		newResourceCreateCommand(st),
		newResourceUpdateCommand(st),
		newResourceDeleteCommand(st),
	)
	return cmd
}

// resourceTypeUsage はフラグの説明に使うリソース種別の一覧。
func resourceTypeUsage() string {
	names := make([]string, len(course.ResourceTypes))
	for i, t := range course.ResourceTypes {
		names[i] = string(t)
	}
	return "種類（" + strings.Join(names, ", ") + "）"
}

func newResourceCreateCommand(st *cliState) *cobra.Command {
	var (
		data         course.CreateResourceData
		resourceType string
	)
	cmd := &cobra.Command{
		Use:   "create <courseId>",
		Short: "リソースを追加する",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			data.Type = course.ResourceType(strings.ToUpper(resourceType))
			r, err := st.app.resources.Create(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			return st.print(r)
		},
	}
	f := cmd.Flags()
	f.StringVar(&data.Title, "title", "", "タイトル")
	f.StringVar(&data.Description, "description", "", "説明")
	f.StringVar(&resourceType, "type", string(course.ResourceTypeWebpage), resourceTypeUsage())
	f.StringVar(&data.URL, "url", "", "URL")
	return cmd
}

func newResourceUpdateCommand(st *cliState) *cobra.Command {
	var title, description, resourceType, rawURL string
	cmd := &cobra.Command{
		Use:   "update <courseId> <resourceId>",
		Short: "指定したフィールドだけリソースを更新する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			var data course.UpdateResourceData
			f := cmd.Flags()
			if f.Changed("title") {
				data.Title = &title
			}
			if f.Changed("description") {
				data.Description = &description
			}
			if f.Changed("type") {
				t := course.ResourceType(strings.ToUpper(resourceType))
				data.Type = &t
			}
			if f.Changed("url") {
				data.URL = &rawURL
			}
			r, err := st.app.resources.Update(cmd.Context(), args[0], args[1], data)
			if err != nil {
				return err
			}
			return st.print(r)
		},
	}
	f := cmd.Flags()
	f.StringVar(&title, "title", "", "タイトル")
	f.StringVar(&description, "description", "", "説明")
	f.StringVar(&resourceType, "type", "", resourceTypeUsage())
	f.StringVar(&rawURL, "url", "", "URL")
	return cmd
}

func newResourceDeleteCommand(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <courseId> <resourceId>",
		Short: "リソースを削除する",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.protected(cmd); err != nil {
				return err
			}
			if err := st.app.resources.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return st.print(map[string]string{"deleted": args[1]})
		},
	}
}
